package schedule

import (
	"strconv"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	appLog "concordiacal/internal/log"
)

// IDProvider hands out the random part of a class UID.
type IDProvider interface {
	NewID() string
}

// NanoIDProvider draws 21-character nanoids from crypto/rand.
type NanoIDProvider struct{}

func (NanoIDProvider) NewID() string {
	id, err := gonanoid.New()
	if err != nil {
		appLog.Error("nanoid generation failed; using timestamp id", err)
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id
}

// SequenceIDProvider yields prefix-1, prefix-2, ... and is safe for
// concurrent use. Useful wherever stable ids matter more than randomness.
type SequenceIDProvider struct {
	Prefix string
	n      atomic.Int64
}

func (s *SequenceIDProvider) NewID() string {
	return s.Prefix + "-" + strconv.FormatInt(s.n.Add(1), 10)
}

// IDFunc adapts a plain function to IDProvider.
type IDFunc func() string

func (f IDFunc) NewID() string { return f() }
