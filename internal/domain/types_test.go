/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPrintJobJSONFieldNames(t *testing.T) {
	job := PrintJob{
		ID: "j1", Timestamp: 1700000000000, ImagesCount: 1,
		ProjectState: ProjectState{Items: []PhotoItem{NewPhotoItem("a", "a.jpg", "assets/a.jpg", 40, 30)}, SelectedIndex: 0},
	}
	b, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"imagesCount":1`, `"projectState":`, `"images":[`, `"selectedIndex":0`, `"shape":"CIRCLE"`, `"lockAspectRatio":false`, `"offsetX":50`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("json %s missing %s", b, key)
		}
	}
	var got PrintJob
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ProjectState.Items[0] != job.ProjectState.Items[0] {
		t.Fatalf("item = %+v, want %+v", got.ProjectState.Items[0], job.ProjectState.Items[0])
	}
}

func TestShapeUnmarshalRejectsUnknown(t *testing.T) {
	var s Shape
	if err := json.Unmarshal([]byte(`"STAR"`), &s); err == nil {
		t.Fatalf("unmarshal STAR: error = nil")
	}
	if err := json.Unmarshal([]byte(`"HEART"`), &s); err != nil || s != ShapeHeart {
		t.Fatalf("unmarshal HEART = %v, %v", s, err)
	}
}

func TestParseShape(t *testing.T) {
	for _, in := range []string{"oval", " Oval ", "OVAL"} {
		if s, err := ParseShape(in); err != nil || s != ShapeOval {
			t.Fatalf("ParseShape(%q) = %v, %v", in, s, err)
		}
	}
	if _, err := ParseShape("triangle"); err == nil {
		t.Fatalf("ParseShape(triangle) error = nil")
	}
}
