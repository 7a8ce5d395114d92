package main

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.version=${VERSION} -X main.commitHash=${COMMIT_HASH}" ./cmd/mpd-client
var (
	version    = "dev"
	commitHash = "" // 7-char git commit hash
)
