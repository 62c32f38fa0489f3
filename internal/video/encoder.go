package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

var (
	lookupGroup singleflight.Group
	lookupMu    sync.Mutex
	lookupCache = map[string]string{}
)

// ListEncoders returns the output of `ffmpeg -encoders` for the binary at
// path. Results are cached per path.
func ListEncoders(ctx context.Context, path string) (string, error) {
	lookupMu.Lock()
	out, ok := lookupCache[path]
	lookupMu.Unlock()
	if ok {
		return out, nil
	}

	v, err, _ := lookupGroup.Do(path, func() (any, error) {
		cmd := exec.CommandContext(ctx, path, "-hide_banner", "-encoders")
		raw, err := cmd.CombinedOutput()
		if err != nil {
			return "", failure.New(failure.KindRecorderUnavailable, "video.encoders", err)
		}
		lookupMu.Lock()
		lookupCache[path] = string(raw)
		lookupMu.Unlock()
		return string(raw), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PickEncoder returns the first of f.Encoders present in the encoder
// listing. The software encoder is last in every list, so a build that
// lists none of them cannot record in f.
func PickEncoder(listing string, f Format) (string, error) {
	for _, name := range f.Encoders {
		if hasEncoder(listing, name) {
			return name, nil
		}
	}
	return "", failure.New(failure.KindRecorderUnavailable, "video.encoder",
		fmt.Errorf("ffmpeg has none of %s for %s", strings.Join(f.Encoders, ", "), f.Name))
}

// BestEncoder queries the ffmpeg binary at path and picks an encoder for f.
func BestEncoder(ctx context.Context, path string, f Format) (string, error) {
	listing, err := ListEncoders(ctx, path)
	if err != nil {
		return "", err
	}
	return PickEncoder(listing, f)
}

// hasEncoder matches a whole encoder name in a `-encoders` listing, where
// each row is " V....D name   description".
func hasEncoder(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}
