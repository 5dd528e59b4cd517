// Package release fetches the worker release artifact addressed by
// spec.md 6's three URL schemes (file://, https://, s3://) and frames it for
// the push leg of the pairing handshake (spec.md 4.3 step 1). Integrity
// checking of the fetched bytes is the adapter's responsibility, per spec.
package release

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Artifact is a fetched release: its bytes and declared size. Callers must
// close Reader.
type Artifact struct {
	Reader io.ReadCloser
	Size   int64
}

// S3Getter is the subset of *s3.Client that Fetch needs, so tests can
// supply a fake instead of talking to AWS.
type S3Getter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetch resolves url by scheme and returns its content. s3Client may be nil
// if url never uses the s3:// scheme.
func Fetch(ctx context.Context, url string, s3Client S3Getter) (Artifact, error) {
	switch {
	case strings.HasPrefix(url, "file://"):
		return fetchFile(strings.TrimPrefix(url, "file://"))
	case strings.HasPrefix(url, "https://"):
		return fetchHTTPS(ctx, url)
	case strings.HasPrefix(url, "s3://"):
		return fetchS3(ctx, url, s3Client)
	default:
		return Artifact{}, fmt.Errorf("release: unsupported scheme in %q", url)
	}
}

func fetchFile(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("release: open %q: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("release: stat %q: %w", path, err)
	}
	return Artifact{Reader: f, Size: stat.Size()}, nil
}

func fetchHTTPS(ctx context.Context, url string) (Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("release: build request for %q: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("release: fetch %q: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return Artifact{}, fmt.Errorf("release: fetch %q: status %d", url, resp.StatusCode)
	}
	return Artifact{Reader: resp.Body, Size: resp.ContentLength}, nil
}

func fetchS3(ctx context.Context, url string, client S3Getter) (Artifact, error) {
	if client == nil {
		return Artifact{}, fmt.Errorf("release: %q requires an s3 client", url)
	}
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return Artifact{}, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return Artifact{}, fmt.Errorf("release: get object %q: %w", url, err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return Artifact{Reader: out.Body, Size: size}, nil
}

func parseS3URL(url string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("release: malformed s3 url %q, want s3://bucket/key", url)
	}
	return parts[0], parts[1], nil
}

// Push frames an artifact as a big-endian uint64 length prefix followed by
// its bytes and writes the whole frame to dest in a single Write call (the
// already-established pairing connection, spec.md 9: "Release push side
// ... typical choice: ... over the existing control channel"). A single
// Write matters when dest is a message-oriented transport such as a
// websocket connection, where each Write becomes one discrete message.
func Push(dest io.Writer, artifact Artifact) error {
	body, err := io.ReadAll(artifact.Reader)
	if err != nil {
		return fmt.Errorf("release: read artifact: %w", err)
	}
	frame := make([]byte, 8+len(body))
	binary.BigEndian.PutUint64(frame[:8], uint64(len(body)))
	copy(frame[8:], body)
	if _, err := dest.Write(frame); err != nil {
		return fmt.Errorf("release: push bytes: %w", err)
	}
	return nil
}

// ReadPushed is the worker-side counterpart to Push: it reads the
// length-prefixed frame Push wrote and returns exactly that many bytes.
func ReadPushed(src io.Reader) ([]byte, error) {
	var size uint64
	if err := binary.Read(src, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("release: read size prefix: %w", err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, fmt.Errorf("release: read %d bytes: %w", size, err)
	}
	return buf, nil
}
