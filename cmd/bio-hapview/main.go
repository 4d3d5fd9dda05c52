// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/encoding/happrovider"
)

var (
	kind        = flag.String("kind", "hap", "Record kind: 'hap' or 'correlation'")
	region      = flag.String("region", "", "Region to load. Format as <contig ID>:<1-based first pos>-<last pos>, or just <contig ID> when fapath is given; required")
	indexPath   = flag.String("index", "", "Tabix index path. Defaults to datapath + .tbi")
	strategy    = flag.String("strategy", "auto", "Loading strategy: 'auto', 'streamed' (BGZF + tabix) or 'cached' (whole file in memory)")
	configPath  = flag.String("config", "", "Optional YAML file with policy and layout overrides")
	format      = flag.String("format", "tsv", "Output format; 'tsv' and 'tsv-bgz' supported")
	outPrefix   = flag.String("out", "bio-hapview", "Output path prefix")
	widthPixels = flag.Int("width", 1000, "Viewport width in pixels, used for the X columns")
)

func bioHapviewUsage() {
	fmt.Printf("Usage: %s [OPTIONS] datapath [fapath]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioHapviewUsage
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		log.Fatalf("Expected datapath and optional fapath; please check flag syntax: '%s'", strings.Join(args, " "))
	}
	opts := hapviewOpts{
		Region:      *region,
		Index:       *indexPath,
		ConfigPath:  *configPath,
		Format:      *format,
		OutPrefix:   *outPrefix,
		WidthPixels: *widthPixels,
	}
	var err error
	if opts.Kind, err = hap.ParseKind(*kind); err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Strategy, err = happrovider.ParseStrategy(*strategy); err != nil {
		log.Fatalf("%v", err)
	}
	var faPath string
	if len(args) == 2 {
		faPath = args[1]
	}
	ctx := vcontext.Background()
	if err := hapview(ctx, args[0], faPath, opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
