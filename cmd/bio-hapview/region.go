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
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hapview/window"
)

// parseRegion parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// into a 0-based half-open request.  The last form covers the whole contig
// and needs lenFn, which may be nil otherwise.
func parseRegion(region string, lenFn func(chr string) (int, error)) (req window.Request, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("parseRegion: empty region string")
		return
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == -1 {
		req.Chr = region
		if lenFn == nil {
			err = fmt.Errorf("parseRegion: region %q without positions needs a reference", region)
			return
		}
		req.End, err = lenFn(region)
		return
	}
	if colonPos == 0 {
		err = fmt.Errorf("parseRegion: empty contig ID")
		return
	}
	req.Chr = region[:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int
		if pos1, err = strconv.Atoi(rangeStr); err != nil {
			return
		}
		if pos1 <= 0 {
			err = fmt.Errorf("parseRegion: position %v in region string out of range", rangeStr)
			return
		}
		req.Start, req.End = pos1-1, pos1
		return
	}
	start1Str, endStr := rangeStr[:dashPos], rangeStr[dashPos+1:]
	var start1 int
	if start1, err = strconv.Atoi(start1Str); err != nil {
		return
	}
	if start1 <= 0 {
		err = fmt.Errorf("parseRegion: position %v in region string out of range", start1Str)
		return
	}
	if req.End, err = strconv.Atoi(endStr); err != nil {
		return
	}
	if req.End < start1 {
		err = fmt.Errorf("parseRegion: empty range %v", rangeStr)
		return
	}
	req.Start = start1 - 1
	return
}
