package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/calcfunding/publishing-backend/internal/platform/envutil"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
)

// ProviderIndexDocument is the search projection of a published provider.
type ProviderIndexDocument struct {
	ID              string `json:"id"`
	ProviderID      string `json:"providerId"`
	ProviderName    string `json:"providerName"`
	SpecificationID string `json:"specificationId"`
	FundingStreamID string `json:"fundingStreamId"`
	FundingPeriodID string `json:"fundingPeriodId"`
	FundingStatus   string `json:"fundingStatus"`
	LocalAuthority  string `json:"localAuthority,omitempty"`
	ProviderType    string `json:"providerType,omitempty"`
	UKPRN           string `json:"ukprn,omitempty"`
}

// Index is the search-index surface: bulk upsert and point lookup.
type Index interface {
	Index(ctx context.Context, documents []ProviderIndexDocument) error
	SearchByID(ctx context.Context, id string) (*ProviderIndexDocument, error)
}

type redisIndex struct {
	log     *logger.Logger
	rdb     *goredis.Client
	keyBase string
}

func NewRedisIndex(log *logger.Logger) (Index, error) {
	addr := envutil.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisIndex{
		log:     log.With("service", "ProviderSearchIndex"),
		rdb:     rdb,
		keyBase: "searchindex:publishedprovider",
	}, nil
}

func (i *redisIndex) Index(ctx context.Context, documents []ProviderIndexDocument) error {
	if len(documents) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(documents))
	for _, doc := range documents {
		if doc.ID == "" {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		fields[doc.ID] = string(raw)
	}
	return i.rdb.HSet(ctx, i.keyBase, fields).Err()
}

func (i *redisIndex) SearchByID(ctx context.Context, id string) (*ProviderIndexDocument, error) {
	raw, err := i.rdb.HGet(ctx, i.keyBase, id).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc ProviderIndexDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
