//go:build !unix

package txgateway

import "os"

// PollableFile returns f unchanged.
func PollableFile(f *os.File) (*os.File, error) {
	return f, nil
}
