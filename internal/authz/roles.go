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

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names for the baseline roles stored in the database.
// The design never hardcodes the role count: administrators may add roles at
// runtime, these four are only the seeded starting point.
// -----------------------------------------------------------------------------

const (
	// RoleAdmin holds every capability in the vocabulary, including the
	// System grants that gate administration itself. At least one Admin
	// assignment must exist or permission administration locks itself out.
	RoleAdmin = "Admin"

	// RoleLibrarian manages documents and categories and moderates reviews.
	RoleLibrarian = "Librarian"

	// RoleTeacher consumes documents and manages their own reviews.
	RoleTeacher = "Teacher"

	// RoleStudent is the default role assigned at registration.
	RoleStudent = "Student"
)

// DefaultRole is assigned to newly registered users.
const DefaultRole = RoleStudent

// baseline starting grants per seeded role. Administrators can change all
// of this at runtime; the seeder only fills gaps, it never overwrites.
var (
	adminBaseline = []Permission{
		{ResourceUser, ActionView}, {ResourceUser, ActionCreate}, {ResourceUser, ActionEdit}, {ResourceUser, ActionDelete},
		{ResourceDocument, ActionView}, {ResourceDocument, ActionCreate}, {ResourceDocument, ActionEdit}, {ResourceDocument, ActionDelete},
		{ResourceDocument, ActionDownload}, {ResourceDocument, ActionUpload},
		{ResourceCategory, ActionView}, {ResourceCategory, ActionCreate}, {ResourceCategory, ActionEdit}, {ResourceCategory, ActionDelete},
		{ResourceReview, ActionView}, {ResourceReview, ActionCreate}, {ResourceReview, ActionEdit}, {ResourceReview, ActionDelete},
		{ResourceReview, ActionModerate},
		{ResourceDashboard, ActionView}, {ResourceDashboard, ActionExport},
		{ResourceSystem, ActionConfigure}, {ResourceSystem, ActionBackup},
	}

	librarianBaseline = []Permission{
		{ResourceDocument, ActionView}, {ResourceDocument, ActionCreate}, {ResourceDocument, ActionEdit}, {ResourceDocument, ActionDelete},
		{ResourceDocument, ActionDownload}, {ResourceDocument, ActionUpload},
		{ResourceCategory, ActionView}, {ResourceCategory, ActionCreate}, {ResourceCategory, ActionEdit}, {ResourceCategory, ActionDelete},
		{ResourceReview, ActionView}, {ResourceReview, ActionModerate},
		{ResourceDashboard, ActionView},
	}

	teacherBaseline = []Permission{
		{ResourceDocument, ActionView}, {ResourceDocument, ActionDownload}, {ResourceDocument, ActionUpload},
		{ResourceReview, ActionView}, {ResourceReview, ActionCreate}, {ResourceReview, ActionEdit}, {ResourceReview, ActionDelete},
	}

	studentBaseline = []Permission{
		{ResourceDocument, ActionView}, {ResourceDocument, ActionDownload},
		{ResourceReview, ActionView}, {ResourceReview, ActionCreate}, {ResourceReview, ActionEdit}, {ResourceReview, ActionDelete},
	}
)
