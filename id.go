// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"strconv"
	"time"

	"code.hybscloud.com/atomix"
)

// ID identifies a fiber. It pairs the wall-clock creation time with a
// process-wide monotonically increasing sequence number, so two IDs are
// equal only if they name the same fiber. ID is comparable and is used
// as the key for interruptor sets and scope ownership.
type ID struct {
	StartNanos int64
	Seq        uint64
}

// None is the zero ID. It identifies no fiber and is the owner of the
// global scope.
var None ID

// seq is the global monotonic counter for fiber sequence numbers.
var seq atomix.Uint64

// newID returns the next fiber identity.
func newID() ID {
	return ID{StartNanos: time.Now().UnixNano(), Seq: seq.Add(1)}
}

// IsNone reports whether id is the zero ID.
func (id ID) IsNone() bool { return id == None }

// String renders the ID as "#seq".
func (id ID) String() string {
	if id.IsNone() {
		return "#none"
	}
	return "#" + strconv.FormatUint(id.Seq, 10)
}
