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
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/layout"
	"github.com/grailbio/hapview/window"
	"gopkg.in/yaml.v3"
)

// config holds the tunables that may be overridden by --config.  Fields
// absent from the file keep their defaults.
type config struct {
	Policy              window.Policy  `yaml:"policy"`
	Layout              layout.Options `yaml:"layout"`
	ResolutionThreshold float64        `yaml:"resolution_threshold"`
}

func defaultConfig(kind hap.Kind) config {
	return config{
		Policy:              window.DefaultPolicy(kind),
		Layout:              layout.DefaultOptions,
		ResolutionThreshold: window.DefaultResolutionThreshold,
	}
}

func loadConfig(ctx context.Context, path string, kind hap.Kind) (cfg config, err error) {
	cfg = defaultConfig(kind)
	if path == "" {
		return cfg, nil
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return cfg, errors.E(err, "open config", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	data, err := ioutil.ReadAll(f.Reader(ctx))
	if err != nil {
		return cfg, errors.E(err, "read config", path)
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.E(errors.Invalid, err, "parse config", path)
	}
	if cfg.Policy.MaxWidth <= 0 || cfg.Policy.Margin < 0 {
		return cfg, errors.E(errors.Invalid, "config", path, "needs a positive policy.max_width and a non-negative policy.margin")
	}
	return cfg, nil
}
