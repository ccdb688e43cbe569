// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// Principal is the authenticated caller attached to a request context.
//
// It carries only what middleware and audit need. The full user snapshot
// stays in the session store.
type Principal struct {
	UserID      string
	Role        Role
	AccountID   string
	Fingerprint string
}
