// Copyright 2026 The OpenShelf Authors
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

package authz

// Resource type tags. A resource type is a coarse category of protected
// entity; the grant table references these by value, so renaming one is a
// data migration, not just a code change.
const (
	ResourceUser      = "User"
	ResourceDocument  = "Document"
	ResourceCategory  = "Category"
	ResourceReview    = "Review"
	ResourceDashboard = "Dashboard"
	ResourceSystem    = "System"
)

// Action tags.
const (
	ActionView      = "View"
	ActionCreate    = "Create"
	ActionEdit      = "Edit"
	ActionDelete    = "Delete"
	ActionDownload  = "Download"
	ActionUpload    = "Upload"
	ActionModerate  = "Moderate"
	ActionExport    = "Export"
	ActionConfigure = "Configure"
	ActionBackup    = "Backup"
)

// ResourceActions describes the actions available on one resource type.
type ResourceActions struct {
	Resource    string   `json:"resource"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// vocabulary is the full capability matrix the administration surface can
// configure. Grants outside this matrix are rejected by the admin service.
var vocabulary = []ResourceActions{
	{
		Resource:    ResourceUser,
		Description: "User management",
		Actions:     []string{ActionView, ActionCreate, ActionEdit, ActionDelete},
	},
	{
		Resource:    ResourceDocument,
		Description: "Document management",
		Actions:     []string{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionDownload, ActionUpload},
	},
	{
		Resource:    ResourceCategory,
		Description: "Category management",
		Actions:     []string{ActionView, ActionCreate, ActionEdit, ActionDelete},
	},
	{
		Resource:    ResourceReview,
		Description: "Review management",
		Actions:     []string{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionModerate},
	},
	{
		Resource:    ResourceDashboard,
		Description: "Dashboard and reporting",
		Actions:     []string{ActionView, ActionExport},
	},
	{
		Resource:    ResourceSystem,
		Description: "System configuration",
		Actions:     []string{ActionConfigure, ActionBackup},
	},
}

// Vocabulary returns the configurable capability matrix. The returned slice
// is a copy; callers may not mutate the vocabulary at runtime.
func Vocabulary() []ResourceActions {
	out := make([]ResourceActions, len(vocabulary))
	for i, ra := range vocabulary {
		out[i] = ResourceActions{
			Resource:    ra.Resource,
			Description: ra.Description,
			Actions:     append([]string(nil), ra.Actions...),
		}
	}
	return out
}

// ValidCapability reports whether (resource, action) is part of the
// vocabulary.
func ValidCapability(resource, action string) bool {
	for _, ra := range vocabulary {
		if ra.Resource != resource {
			continue
		}
		for _, a := range ra.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}
