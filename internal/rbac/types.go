// Copyright 2026 fanjia1024
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

// Package rbac is the fixed role/permission authorization model (C9).
package rbac

// Role is one of the three fixed roles; there is no role hierarchy beyond
// the mapping in RolePermissions.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Permission is a "verb:resource" capability string, e.g. "read:audit" or
// "execute:job". "read:*" grants every read permission.
type Permission string

const (
	PermissionReadAll        Permission = "read:*"
	PermissionWriteEnforce   Permission = "write:enforcement"
	PermissionWriteReflex    Permission = "write:reflex"
	PermissionExecuteJob     Permission = "execute:job"
	PermissionExecuteReflex  Permission = "execute:reflex"
	PermissionWriteGovernor  Permission = "write:governor"
	PermissionManageRBAC     Permission = "manage:rbac"
	PermissionManageSystem   Permission = "manage:system"
)

// RolePermissions is the fixed role -> permission-set mapping. operator
// inherits viewer's permissions; admin inherits operator's.
var RolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermissionReadAll,
	},
	RoleOperator: {
		PermissionReadAll,
		PermissionWriteEnforce,
		PermissionWriteReflex,
		PermissionExecuteJob,
		PermissionExecuteReflex,
	},
	RoleAdmin: {
		PermissionReadAll,
		PermissionWriteEnforce,
		PermissionWriteReflex,
		PermissionExecuteJob,
		PermissionExecuteReflex,
		PermissionWriteGovernor,
		PermissionManageRBAC,
		PermissionManageSystem,
	},
}

// User identifies the caller an authorization decision is made for.
type User struct {
	UserID string
	Role   Role
}

// Decision is the result of an authorize() call.
type Decision struct {
	Allowed bool
	Missing []Permission
	Reason  string
}
