package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"strings"
)

// DetectEncoder resolves an encoder preference. "auto" picks NVENC when
// ffmpeg lists it, otherwise libx264.
func (e *Executor) DetectEncoder(ctx context.Context, preference string) string {
	switch preference {
	case CodecX264, CodecNVENC:
		return preference
	}

	listing, err := e.listing(ctx, "-encoders")
	if err != nil {
		e.logger.Warn().Err(err).Msg("encoder listing failed, using libx264")
		return CodecX264
	}
	if listHas(listing, CodecNVENC) {
		return CodecNVENC
	}
	return CodecX264
}

// HasEncoder reports whether ffmpeg was built with the named encoder
func (e *Executor) HasEncoder(ctx context.Context, name string) bool {
	listing, err := e.listing(ctx, "-encoders")
	if err != nil {
		e.logger.Warn().Err(err).Str("encoder", name).Msg("encoder listing failed")
		return false
	}
	return listHas(listing, name)
}

// HasFilter reports whether ffmpeg was built with the named filter
func (e *Executor) HasFilter(ctx context.Context, name string) bool {
	listing, err := e.listing(ctx, "-filters")
	if err != nil {
		e.logger.Warn().Err(err).Str("filter", name).Msg("filter listing failed")
		return false
	}
	return listHas(listing, name)
}

// listing runs and caches ffmpeg -encoders / -filters
func (e *Executor) listing(ctx context.Context, flag string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cached := &e.encoders
	if flag == "-filters" {
		cached = &e.filters
	}
	if *cached != "" {
		return *cached, nil
	}

	out, err := e.query(ctx, e.ffmpegPath, "-hide_banner", flag)
	if err != nil {
		return "", err
	}
	*cached = string(out)
	return *cached, nil
}

// listHas matches the name column of an ffmpeg capability listing
func listHas(listing, name string) bool {
	scanner := bufio.NewScanner(bytes.NewReader([]byte(listing)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}
