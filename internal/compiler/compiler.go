package compiler

import (
	"crypto/sha256"
	"strings"

	"github.com/calcfunding/publishing-backend/internal/types"
)

// Compiler compiles a fixed set of generated source files into a build
// artifact. Implementations must report bad source code through
// Build.Success=false rather than an error.
type Compiler interface {
	Compile() *types.Build
}

// Factory hands out a compiler bound to a set of source files.
type Factory interface {
	GetCompiler(sourceFiles []types.SourceFile) Compiler
}

// InProcessFactory is the default factory: a deterministic validator that
// stands in for the real calculation-language backend behind the same
// contract.
type InProcessFactory struct{}

func NewInProcessFactory() Factory { return &InProcessFactory{} }

func (f *InProcessFactory) GetCompiler(sourceFiles []types.SourceFile) Compiler {
	return &inProcessCompiler{sourceFiles: sourceFiles}
}

type inProcessCompiler struct {
	sourceFiles []types.SourceFile
}

func (c *inProcessCompiler) Compile() *types.Build {
	build := &types.Build{SourceFiles: c.sourceFiles}
	digest := sha256.New()
	success := true
	for _, file := range c.sourceFiles {
		if strings.TrimSpace(file.SourceCode) == "" {
			build.CompilerMessages = append(build.CompilerMessages,
				"empty source code in file "+file.FileName)
			success = false
			continue
		}
		digest.Write([]byte(file.FileName))
		digest.Write([]byte(file.SourceCode))
	}
	build.Success = success
	if success {
		build.Assembly = digest.Sum(nil)
	}
	return build
}
