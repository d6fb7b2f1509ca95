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

package importer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/eldrix/snomed-engine/rf2"
)

type taggedFile struct {
	path       string
	descriptor rf2.Descriptor
}

type classifiedFiles struct {
	core   []taggedFile
	refset []taggedFile
}

// scan walks root, classifying every importable RF2 Snapshot file into the
// core phase or the refset phase. Refset Descriptor files travel with the
// core phase: descriptor rows must be present, and indexed, before any
// refset that depends on them is decoded.
func scan(root string) (classifiedFiles, error) {
	var result classifiedFiles
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		descriptor, ok := rf2.ParseFilename(path)
		if !ok || !descriptor.Importable() {
			return nil
		}
		tf := taggedFile{path: path, descriptor: descriptor}
		switch descriptor.ParserID() {
		case "Concept", "Description", "Relationship", "ConcreteValue":
			result.core = append(result.core, tf)
		case "Refset":
			if descriptor.RefsetName == "RefsetDescriptor" {
				result.core = append(result.core, tf)
			} else {
				result.refset = append(result.refset, tf)
			}
		}
		return nil
	})
	if err != nil {
		return classifiedFiles{}, err
	}
	return result, nil
}

// forEachBatch reads a tab-separated RF2 file, skipping the header row, and
// invokes f with successive batches of up to batchSize data rows. firstLine
// is the 1-based line number of the batch's first row, so a parse failure
// can be reported against the exact line of the release file.
func forEachBatch(path string, batchSize int, f func(firstLine int, rows [][]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		return fmt.Errorf("%s: empty file", path)
	}

	lineNo := 1 // the header
	firstLine := 0
	batch := make([][]string, 0, batchSize)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		if len(batch) == 0 {
			firstLine = lineNo
		}
		batch = append(batch, strings.Split(line, "\t"))
		if len(batch) == batchSize {
			if err := f(firstLine, batch); err != nil {
				return err
			}
			batch = make([][]string, 0, batchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(batch) > 0 {
		if err := f(firstLine, batch); err != nil {
			return err
		}
	}
	return nil
}

// releasePackageInfo mirrors the handful of fields present in the optional
// release_package_information.json side-channel some distributions ship
// alongside the RF2 files. It is informational only.
type releasePackageInfo struct {
	PackageName   string `json:"packageName"`
	PackageDate   string `json:"packageDate"`
	ContentSource string `json:"contentSource"`
}

// logReleasePackageInfo looks for a release_package_information.json file at
// root and logs its contents if present and parseable. A missing or
// malformed file is logged, never fatal: it is metadata about the release,
// not a component the system depends on to import correctly.
func logReleasePackageInfo(logger *log.Logger, root string) {
	path := filepath.Join(root, "release_package_information.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var info releasePackageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		logger.Printf("importer: found %s but could not parse it: %v", path, err)
		return
	}
	logger.Printf("importer: release package %q (%s), source %q", info.PackageName, info.PackageDate, info.ContentSource)
}
