// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import "errors"

// ErrTabGone is returned when a tab id no longer refers to an open tab.
var ErrTabGone = errors.New("browser: tab is gone")

// ErrNotConnected is returned by a Host whose browser connection was closed.
var ErrNotConnected = errors.New("browser: not connected")
