package main

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.version=${VERSION} -X main.commitHash=${COMMIT_HASH}"
//
// In development (go run), the defaults are used.
var (
	version    = "dev"
	commitHash = "dev"
)
