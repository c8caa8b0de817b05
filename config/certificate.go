package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/AmmannChristian/go-casdoorauth/internal/validator"
)

// Logger is an interface for optional logging.
type Logger = validator.Logger

var (
	// ErrEmptyCertificate is returned when the certificate value is blank.
	ErrEmptyCertificate = errors.New("config: certificate configuration cannot be empty")
	// ErrCertificateNotFound is returned when a certificate reference matches
	// no resource and no file.
	ErrCertificateNotFound = errors.New("config: certificate does not exist in resources or file system")
	// ErrCertificateReadFailed is returned when a certificate file exists but
	// cannot be read.
	ErrCertificateReadFailed = errors.New("config: failed to read certificate file")

	errNotFound = errors.New("not found")
)

// ResolutionError reports why certificate material could not be resolved.
type ResolutionError struct {
	// Err is one of ErrEmptyCertificate, ErrCertificateNotFound or ErrCertificateReadFailed.
	Err error
	// Reference is the raw configuration value being resolved.
	Reference string
	// Cause is the underlying I/O error for ErrCertificateReadFailed.
	Cause error
}

func (e *ResolutionError) Error() string {
	msg := e.Err.Error()
	if e.Reference != "" {
		msg += ": " + e.Reference
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the I/O cause to errors.Is.
func (e *ResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// ResolveOption configures certificate resolution.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	resources []fs.FS
	logger    Logger
}

// WithResources registers file systems searched before the real file system,
// in order. They play the role of bundled application resources; an
// embed.FS holding "certs/casdoor.pem" makes "./certs/casdoor.pem" resolvable
// without a file on disk.
func WithResources(fsys ...fs.FS) ResolveOption {
	return func(o *resolveOptions) {
		o.resources = append(o.resources, fsys...)
	}
}

// WithLogger sets a logger receiving one message per lookup attempt.
func WithLogger(logger Logger) ResolveOption {
	return func(o *resolveOptions) {
		o.logger = logger
	}
}

// ResolveCertificate turns a certificate setting into certificate content.
//
// Values that look like paths (they contain '/' or '\', start with "./" or
// "../", or end in .pem, .crt, .cer or .cert) are loaded; anything else is
// returned unchanged as inline content. Loading tries, in order:
//
//  1. the resources with one leading "/" removed
//  2. the resources with a leading "./" removed
//  3. the resources with the value as is
//  4. the file system at the value
//  5. the file system with a leading "./" removed
//
// Resource failures count as misses. A file that exists but cannot be read
// stops the search with ErrCertificateReadFailed.
func ResolveCertificate(raw string, opts ...ResolveOption) (string, error) {
	o := &resolveOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if strings.TrimSpace(raw) == "" {
		return "", &ResolutionError{Err: ErrEmptyCertificate}
	}

	if !isPathReference(raw) {
		return raw, nil
	}

	for _, attempt := range certificateLookups(raw, o.resources) {
		content, err := attempt.read()
		switch {
		case err == nil:
			o.logf("config: resolved certificate %s via %s", raw, attempt.name)
			return string(content), nil
		case errors.Is(err, errNotFound):
			o.logf("config: certificate %s not found via %s", raw, attempt.name)
		default:
			return "", &ResolutionError{Err: ErrCertificateReadFailed, Reference: raw, Cause: err}
		}
	}

	return "", &ResolutionError{Err: ErrCertificateNotFound, Reference: raw}
}

func (o *resolveOptions) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// isPathReference reports whether value should be loaded rather than used inline.
func isPathReference(value string) bool {
	return strings.ContainsAny(value, `/\`) ||
		strings.HasSuffix(value, ".pem") ||
		strings.HasSuffix(value, ".crt") ||
		strings.HasSuffix(value, ".cer") ||
		strings.HasSuffix(value, ".cert") ||
		strings.HasPrefix(value, "./") ||
		strings.HasPrefix(value, "../")
}

type lookup struct {
	name string
	read func() ([]byte, error)
}

func certificateLookups(raw string, resources []fs.FS) []lookup {
	lookups := []lookup{
		resourceLookup("resource "+strings.TrimPrefix(raw, "/"), strings.TrimPrefix(raw, "/"), resources),
		resourceLookup("resource "+strings.TrimPrefix(raw, "./"), strings.TrimPrefix(raw, "./"), resources),
		resourceLookup("resource "+raw, raw, resources),
		fileLookup("file "+raw, raw),
	}
	if strings.HasPrefix(raw, "./") {
		stripped := strings.TrimPrefix(raw, "./")
		lookups = append(lookups, fileLookup("file "+stripped, stripped))
	}
	return lookups
}

// resourceLookup never surfaces an error other than errNotFound; invalid
// fs.FS names such as "/abs" or "./rel" simply miss.
func resourceLookup(name, path string, resources []fs.FS) lookup {
	return lookup{
		name: name,
		read: func() ([]byte, error) {
			for _, fsys := range resources {
				if fsys == nil {
					continue
				}
				if content, err := fs.ReadFile(fsys, path); err == nil {
					return content, nil
				}
			}
			return nil, errNotFound
		},
	}
}

func fileLookup(name, path string) lookup {
	return lookup{
		name: name,
		read: func() ([]byte, error) {
			if _, err := os.Stat(path); err != nil {
				return nil, errNotFound
			}
			return os.ReadFile(path)
		},
	}
}
