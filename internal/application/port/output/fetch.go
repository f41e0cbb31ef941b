package output

import "context"

type FetchedFile struct {
	Data               []byte
	ContentType        string
	ContentDisposition string
}

type Downloader interface {
	Download(ctx context.Context, url string) (*FetchedFile, error)
}

// FileSink stores downloaded bytes and returns where they ended up.
type FileSink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}
