package convert

import "context"

// PassthroughStrategy returns the bound document unconverted. It terminates
// every chain because it cannot fail: the bytes are already in hand.
type PassthroughStrategy struct{}

func NewPassthroughStrategy() *PassthroughStrategy {
	return &PassthroughStrategy{}
}

func (PassthroughStrategy) Mode() string { return ModeOriginal }

func (PassthroughStrategy) Convert(_ context.Context, doc Document) (*Artifact, error) {
	return &Artifact{Bytes: doc.Bytes, Format: FormatDOCX}, nil
}
