// Package graphbuilder builds dataflow graph IR from textual graph
// listings, for feeding the alias analysis from files or strings.
//
package graphbuilder // import "github.com/nickng/alias-hunter/graphbuilder"

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"

	"github.com/nickng/alias-hunter/ir"
)

// A Mode value is a flag indicating how the graph listings are supplied.
type Mode uint

const (
	// FromFiles is option to use a list of filenames, one graph per file.
	FromFiles Mode = 1 << iota

	// FromString is option to use a string as a single graph listing.
	FromString
)

// Config holds the configuration for building graph IR.
type Config struct {
	BuildMode Mode
	Files     []string  // Graph listing files to load.
	Source    string    // Graph listing source text.
	BuildLog  io.Writer // Build log.
	LogFlags  int       // Flags for build log.
}

// Info is the graph IR + metainfo built from a given Config.
type Info struct {
	BuildConf *Config     // Build configuration (initial files, logs).
	Graphs    []*ir.Graph // One graph per listing.

	Logger *log.Logger // Build logger.
}

// NewConfig creates a new default build configuration.
func NewConfig(files []string) (*Config, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files specified for analysis")
	}
	return &Config{
		BuildMode: FromFiles,
		Files:     files,
		BuildLog:  ioutil.Discard,
		LogFlags:  log.LstdFlags,
	}, nil
}

// NewConfigFromString creates a new default build configuration.
func NewConfigFromString(s string) (*Config, error) {
	return &Config{
		BuildMode: FromString,
		Source:    s,
		BuildLog:  ioutil.Discard,
		LogFlags:  log.LstdFlags,
	}, nil
}

// Build parses the configured listings into graph IR.
func (conf *Config) Build() (*Info, error) {
	buildLog := log.New(conf.BuildLog, "graphbuild: ", conf.LogFlags)

	info := &Info{BuildConf: conf, Logger: buildLog}
	switch conf.BuildMode {
	case FromFiles:
		for _, file := range conf.Files {
			src, err := ioutil.ReadFile(file)
			if err != nil {
				return nil, err
			}
			g, err := Parse(file, string(src))
			if err != nil {
				return nil, err
			}
			buildLog.Printf("Parsed graph from %s", file)
			info.Graphs = append(info.Graphs, g)
		}
	case FromString:
		g, err := Parse("", conf.Source)
		if err != nil {
			return nil, err
		}
		buildLog.Print("Parsed graph from string")
		info.Graphs = append(info.Graphs, g)
	default:
		return nil, fmt.Errorf("unknown build mode")
	}
	return info, nil
}
