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
	"github.com/spf13/cobra"
)

var (
	dotfile string // Path to dot output file
)

// dotCmd represents the dot command
var dotCmd = &cobra.Command{
	Use:   "dot",
	Short: "Render the alias relation as Graphviz dot",
	Long: `Render the points-to/contains relation of the input graph in
Graphviz dot format for visualisation.`,
	Run: func(cmd *cobra.Command, args []string) {
		dot(args)
	},
}

func init() {
	dotCmd.Flags().StringVar(&dotfile, "output", "output.dot", "output dot file")

	RootCmd.AddCommand(dotCmd)
}

func dot(files []string) {
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

	f, err := os.Create(dotfile)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	for _, g := range info.Graphs {
		db, err := aliasdb.New(g, l.Writer)
		if err != nil {
			log.Fatal(err)
		}
		if err := db.WriteDot(f); err != nil {
			log.Fatal(err)
		}
	}
}
