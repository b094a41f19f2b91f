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

package rbac

import (
	"fmt"
	"strings"

	"neurorail/internal/metrics"
	"neurorail/pkg/log"
)

// Authorizer evaluates authorize() calls against the fixed RolePermissions
// mapping, incrementing metrics and logging denials.
type Authorizer struct {
	log *log.Logger
}

// NewAuthorizer builds an Authorizer. logger may be nil, in which case
// denials are not logged.
func NewAuthorizer(logger *log.Logger) *Authorizer {
	return &Authorizer{log: logger}
}

// Authorize decides whether user's role grants required. requireAll=true
// means every entry in required must be granted; requireAll=false means
// at least one must be.
func (a *Authorizer) Authorize(user User, required []Permission, requireAll bool) Decision {
	granted := RolePermissions[user.Role]

	var missing []Permission
	grantedCount := 0
	for _, req := range required {
		if hasPermission(granted, req) {
			grantedCount++
		} else {
			missing = append(missing, req)
		}
	}

	allowed := false
	switch {
	case len(required) == 0:
		allowed = true
	case requireAll:
		allowed = len(missing) == 0
	default:
		allowed = grantedCount > 0
	}

	d := Decision{Allowed: allowed}
	if allowed {
		d.Reason = fmt.Sprintf("role %s grants required permissions", user.Role)
	} else {
		d.Missing = missing
		d.Reason = fmt.Sprintf("role %s missing required permissions: %v", user.Role, missing)
	}

	if !allowed {
		metrics.RBACDenialsTotal.WithLabelValues(string(user.Role)).Inc()
		if a.log != nil {
			a.log.Info(fmt.Sprintf("rbac denied: user=%s role=%s missing=%v", user.UserID, user.Role, missing))
		}
	}

	return d
}

// hasPermission reports whether granted satisfies req, treating
// PermissionReadAll as covering every "read:*" permission.
func hasPermission(granted []Permission, req Permission) bool {
	for _, p := range granted {
		if p == req {
			return true
		}
		if p == PermissionReadAll && strings.HasPrefix(string(req), "read:") {
			return true
		}
	}
	return false
}
