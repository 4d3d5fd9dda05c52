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
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hapview/encoding/fasta"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/encoding/happrovider"
	"github.com/grailbio/hapview/layout"
	"github.com/grailbio/hapview/viewport"
	"github.com/grailbio/hapview/window"
	"github.com/grailbio/hts/bgzf"
)

const frameName = "main"

type hapviewOpts struct {
	Kind        hap.Kind
	Strategy    happrovider.Strategy
	Region      string
	Index       string
	ConfigPath  string
	Format      string
	OutPrefix   string
	WidthPixels int
}

func hapview(ctx context.Context, dataPath, faPath string, opts hapviewOpts) (err error) {
	var bgzip bool
	switch opts.Format {
	case "tsv":
	case "tsv-bgz":
		bgzip = true
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("unknown output format %q", opts.Format))
	}
	if opts.WidthPixels <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("width must be positive, got %d", opts.WidthPixels))
	}
	cfg, err := loadConfig(ctx, opts.ConfigPath, opts.Kind)
	if err != nil {
		return err
	}

	var (
		ref   window.SequenceSource
		lenFn func(string) (int, error)
	)
	if faPath != "" {
		fa, ferr := fasta.Open(ctx, faPath)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if e := fa.Close(); e != nil && err == nil {
				err = e
			}
		}()
		ref, lenFn = fa, fa.Len
	} else if opts.Kind == hap.HapKind {
		log.Printf("no reference given: haplotype calls cannot be placed on sites")
	}
	req, err := parseRegion(opts.Region, lenFn)
	if err != nil {
		return errors.E(errors.Invalid, err)
	}

	provider, err := happrovider.NewProvider(ctx, dataPath, happrovider.Opts{
		Kind:     opts.Kind,
		Strategy: opts.Strategy,
		Index:    opts.Index,
	})
	if err != nil {
		return err
	}
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()

	cache := window.NewCache(provider, opts.Kind, ref, window.Opts{
		Policy:              cfg.Policy,
		ResolutionThreshold: cfg.ResolutionThreshold,
	})
	frame := viewport.Frame{
		Name:        frameName,
		Chr:         req.Chr,
		Origin:      float64(req.Start),
		Scale:       float64(req.Width()) / float64(opts.WidthPixels),
		WidthPixels: opts.WidthPixels,
	}
	w, err := cache.Load(ctx, frame.Name, req)
	if err != nil {
		return err
	}
	log.Debug.Printf("%v: ready %v", frame, cache.Ready(frame))
	if w.Truncated {
		log.Printf("%v is wider than %d bases; no records loaded", req, cache.Policy().MaxWidth)
	}
	if w.Skipped > 0 {
		log.Printf("%s: skipped %d malformed lines", dataPath, w.Skipped)
	}

	if opts.Kind == hap.CorrelationKind {
		return writeCorrelations(ctx, opts.OutPrefix+".correlations.tsv", bgzip, frame, w)
	}
	res := layout.New(cfg.Layout).LayoutWindow(w)
	for _, e := range res.Errs {
		log.Printf("%v", e)
	}
	if err = writeRows(ctx, opts.OutPrefix+".rows.tsv", bgzip, frame, w.Haps(), res); err != nil {
		return err
	}
	return writeSites(ctx, opts.OutPrefix+".sites.tsv", bgzip, frame, w.Chr, res.Sites)
}

// createTSV opens path for writing and calls fn with a TSV writer on it.  With
// bgzip set, ".gz" is appended to path and the output is BGZF compressed.
func createTSV(ctx context.Context, path string, bgzip bool, fn func(w *tsv.Writer) error) (err error) {
	if bgzip {
		path += ".gz"
	}
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)

	var w *tsv.Writer
	if !bgzip {
		w = tsv.NewWriter(dst.Writer(ctx))
	} else {
		bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), 1)
		w = tsv.NewWriter(bgzfWriter)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
	}
	if err = fn(w); err != nil {
		return
	}
	err = w.Flush()
	return
}

func writeRows(ctx context.Context, path string, bgzip bool, frame viewport.Frame, haps []*hap.Hap, res *layout.Result) error {
	return createTSV(ctx, path, bgzip, func(w *tsv.Writer) error {
		w.WriteString("#CHROM\tSTART\tEND\tSTRAND\tROW\tCALLS\tX")
		if err := w.EndLine(); err != nil {
			return err
		}
		calls := make([]byte, 0, 64)
		for _, p := range res.Placements {
			h := haps[p.Index]
			calls = calls[:0]
			for _, a := range p.Anchors {
				if a.Pad {
					continue
				}
				if a.Call {
					calls = append(calls, '1')
				} else {
					calls = append(calls, '0')
				}
			}
			w.WriteString(h.Chr)
			w.WriteInt64(int64(h.Start))
			w.WriteInt64(int64(h.End))
			w.WriteString(h.Strand.String())
			w.WriteInt64(int64(p.Row))
			if len(calls) == 0 {
				w.WriteByte('.')
			} else {
				w.WriteString(string(calls))
			}
			w.WriteFloat64(frame.X(float64(h.Start)), 'f', 2)
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeSites(ctx context.Context, path string, bgzip bool, frame viewport.Frame, chr string, sites layout.SiteAggregate) error {
	return createTSV(ctx, path, bgzip, func(w *tsv.Writer) error {
		w.WriteString("#CHROM\tPOS\tCOUNT\tSUM\tMEAN\tX")
		if err := w.EndLine(); err != nil {
			return err
		}
		for _, pos := range sites.Positions() {
			s := sites[pos]
			w.WriteString(chr)
			w.WriteInt64(int64(pos))
			w.WriteInt64(int64(s.Count))
			w.WriteInt64(int64(s.Sum))
			w.WriteString(s.Label())
			w.WriteFloat64(frame.X(float64(pos)), 'f', 2)
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCorrelations(ctx context.Context, path string, bgzip bool, frame viewport.Frame, win *window.Window) error {
	corrs := win.Correlations()
	rows := layout.CorrelationRows(corrs)
	return createTSV(ctx, path, bgzip, func(w *tsv.Writer) error {
		w.WriteString("#CHROM\tSTART\tEND\tPERCENT\tROW\tCENTER\tDEPTH")
		if err := w.EndLine(); err != nil {
			return err
		}
		for i, c := range corrs {
			center, depth := viewport.Diamond(c.Start, c.End, frame.Scale, frame.Origin)
			w.WriteString(c.Chr)
			w.WriteInt64(int64(c.Start))
			w.WriteInt64(int64(c.End))
			w.WriteInt64(int64(c.Percent()))
			w.WriteInt64(int64(rows[i]))
			w.WriteFloat64(center, 'f', 2)
			w.WriteFloat64(depth, 'f', 2)
			if err := w.EndLine(); err != nil {
				return err
			}
		}
		return nil
	})
}
