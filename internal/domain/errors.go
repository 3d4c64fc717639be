package domain

import "errors"

var (
	// ErrAuthentication is returned when the marketplace answers 401/403; such requests are not retried
	ErrAuthentication = errors.New("marketplace authentication expired or access denied")

	// ErrRateLimited is returned when the retry budget ran out on a 429 response
	ErrRateLimited = errors.New("marketplace rate limit exceeded")

	// ErrRequestFailed is returned when the retry budget ran out on any other failure
	ErrRequestFailed = errors.New("marketplace request failed")

	// ErrIdentityNotRecognized is returned when a URL is not a product page or the page names no product
	ErrIdentityNotRecognized = errors.New("product name not recognized")

	// ErrDuplicateMatch is returned when a search match for the same key was written concurrently
	ErrDuplicateMatch = errors.New("search match already exists")

	// ErrMatchNotFound is returned when a cached search match id does not exist
	ErrMatchNotFound = errors.New("search match not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidSortMode is returned for an unknown sort mode
	ErrInvalidSortMode = errors.New("invalid sort mode")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
