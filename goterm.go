// SNOMED CT terminology engine command line utility
//
// Copyright 2018 Mark Wardle / Eldrix Ltd
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.
//
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/text/language"

	"github.com/eldrix/snomed-engine/terminology"
)

// automatically populated by linker flags
var version string
var build string

// commands and flags
var doVersion = flag.Bool("version", false, "Show version information")
var doImport = flag.Bool("import", false, "import SNOMED-CT RF2 files from the directories specified")
var doIndex = flag.Bool("index", false, "rebuild the derived and search indices")
var doCompact = flag.Bool("compact", false, "compact the store after import")
var doCreate = flag.Bool("create", false, "one-shot pipeline: import, index and compact the directories specified")
var database = flag.String("db", "", "path of database directory to open or create (e.g. ./snomed.db)")
var lang = flag.String("lang", "en-GB", "language tags to be used, default 'en-GB'")
var stats = flag.Bool("status", false, "show database status")
var expand = flag.String("ecl", "", "expand the ECL expression specified")

func main() {
	flag.Parse()
	if *doVersion {
		fmt.Printf("%s v%s (%s)\n", os.Args[0], version, build)
		os.Exit(1)
	}
	if *database == "" {
		fmt.Fprint(os.Stderr, "error: missing mandatory database directory\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	tag, err := language.Parse(*lang)
	if err != nil {
		log.Fatalf("invalid language %q: %v", *lang, err)
	}

	if *doCreate {
		if flag.NArg() == 0 {
			log.Fatalf("no input directories specified")
		}
		svc, err := terminology.CreateService(*database, flag.Args(), tag, nil)
		if err != nil {
			log.Fatalf("couldn't create database: %v", err)
		}
		svc.Close()
		return
	}
	if *doImport {
		if flag.NArg() == 0 {
			log.Fatalf("no input directories specified")
		}
		if err := terminology.ImportSnomed(context.Background(), *database, flag.Args(), nil); err != nil {
			log.Fatalf("import failed: %v", err)
		}
	}
	if *doIndex {
		if err := terminology.IndexDatabase(*database, nil); err != nil {
			log.Fatalf("indexing failed: %v", err)
		}
	}
	if *doCompact {
		if err := terminology.CompactDatabase(*database, nil); err != nil {
			log.Fatalf("compaction failed: %v", err)
		}
	}
	if !*stats && *expand == "" {
		return
	}

	svc, err := terminology.Open(*database, terminology.WithDefaultLanguage(tag))
	if err != nil {
		log.Fatalf("couldn't open database: %v", err)
	}
	defer svc.Close()

	if *stats {
		s, err := svc.Status(terminology.StatusOptions{Counts: true, Refsets: true})
		if err != nil {
			log.Fatal(err)
		}
		for _, release := range s.Releases {
			fmt.Printf("release: %s (%s)\n", release.Term, release.EffectiveTime.Format("2006-01-02"))
		}
		fmt.Printf("installed locales: %v\n", s.Locales)
		if s.Statistics != nil {
			fmt.Printf("concepts: %d descriptions: %d relationships: %d refset items: %d refsets: %d\n",
				s.Statistics.Concepts, s.Statistics.Descriptions, s.Statistics.Relationships,
				s.Statistics.RefsetItems, len(s.Statistics.Refsets))
		}
	}
	if *expand != "" {
		ids, err := svc.ExpandECL(*expand, 0)
		if err != nil {
			log.Fatal(err)
		}
		for _, id := range ids {
			term := ""
			if d, err := svc.PreferredSynonym(id, *lang, true); err == nil {
				term = d.Term
			}
			fmt.Printf("%d\t%s\n", id, term)
		}
	}
}
