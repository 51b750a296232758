package vision

import "context"

// Fake is a test double returning a canned response.
type Fake struct {
	ResponseText string
	Err          error
}

func (f *Fake) Analyze(ctx context.Context, image []byte, mimeType string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.ResponseText, nil
}

func (f *Fake) Ping(ctx context.Context) error {
	return f.Err
}

func NewFake(response string) *Fake {
	return &Fake{ResponseText: response}
}
