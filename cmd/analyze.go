// Copyright © 2019 Nicholas Ng <nickng@projectfate.org>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"log"
	"os"

	"github.com/nickng/alias-hunter/aliasdb"
	"github.com/nickng/alias-hunter/graphbuilder"
	"github.com/nickng/alias-hunter/logwriter"
	"github.com/spf13/cobra"
)

var (
	outfile string // Path to output file
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run alias analysis on the inputs",
	Long: `Run alias analysis on the inputs

The inputs should be a list of graph listing files.
The resulting alias database is printed for each graph.`,
	Run: func(cmd *cobra.Command, args []string) {
		analyze(args)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&outfile, "output", "", "output dump file")

	RootCmd.AddCommand(analyzeCmd)
}

func analyze(files []string) {
	l := newLogWriter()
	defer l.Cleanup()

	conf, err := graphbuilder.NewConfig(files)
	if err != nil {
		log.Fatal(err)
	}
	conf.BuildLog = l.Writer
	info, err := conf.Build()
	if err != nil {
		log.Fatal(err)
	}

	out := os.Stdout
	if outfile != "" {
		f, err := os.Create(outfile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		out = f
	}
	for i, g := range info.Graphs {
		db, err := aliasdb.New(g, l.Writer)
		if err != nil {
			log.Fatal(err)
		}
		info.Logger.Printf("Analysed graph %d of %d", i+1, len(info.Graphs))
		out.WriteString(db.Dump())
	}
}

// newLogWriter creates the log writer configured by the persistent flags.
func newLogWriter() *logwriter.Writer {
	logFile, err := RootCmd.PersistentFlags().GetString("log")
	if err != nil {
		log.Fatal(err)
	}
	noLogging, err := RootCmd.PersistentFlags().GetBool("no-logging")
	if err != nil {
		log.Fatal(err)
	}
	noColour, err := RootCmd.PersistentFlags().GetBool("no-colour")
	if err != nil {
		log.Fatal(err)
	}
	l := logwriter.NewFile(logFile, !noLogging, !noColour)
	if err := l.Create(); err != nil {
		log.Fatal(err)
	}
	return l
}
