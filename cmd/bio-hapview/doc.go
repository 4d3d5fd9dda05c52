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

/*
bio-hapview loads the haplotype (or correlation) records around a genomic
region the way an interactive viewer would for one viewport, lays them out
into rows, and writes the result as TSV.

For haplotype files two outputs are produced:

  <out>.rows.tsv   one line per record: #CHROM START END STRAND ROW CALLS X
  <out>.sites.tsv  one line per CpG site: #CHROM POS COUNT SUM MEAN X

where X is the pixel offset in a viewport -width pixels wide showing the
region.  Records whose call strings are shorter than the number of CpG sites
they cover are reported on stderr and left out.

For correlation files a single <out>.correlations.tsv is produced:

  #CHROM START END PERCENT ROW CENTER DEPTH

Sample usage:
bio-hapview \
    --region chr7:1000001-1000400 \
    --out output-prefix \
    sample.hap.gz hg38.fa

Files ending in .gz or .bgz must be BGZF compressed with a tabix index next to
them (or named by --index); other files are read into memory.  Coordinates in
the outputs are 0-based, like the inputs.

--config names a YAML file overriding the loading policy and layout, e.g.

  policy:
    max_width: 2000
    margin: 100
  layout:
    motif: CG
    strict_counts: true
*/
package main
