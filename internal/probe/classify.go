package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// ErrorKind is the coarse failure classification recorded on failed probes.
type ErrorKind string

const (
	ErrNone        ErrorKind = ""
	ErrTimeout     ErrorKind = "timeout"
	ErrRefused     ErrorKind = "connection_refused"
	ErrUnreachable ErrorKind = "unreachable"
	ErrNetwork     ErrorKind = "network"
	ErrDNS         ErrorKind = "dns"
	ErrTLS         ErrorKind = "tls"
	ErrMalformed   ErrorKind = "malformed_address"
	ErrStatus      ErrorKind = "http_status"
	ErrExposition  ErrorKind = "bad_exposition"
)

// Transient reports whether a failure of this kind is worth retrying.
// Permanent kinds (bad addresses, certificate rejection, DNS name not found,
// HTTP error statuses) fail the probe immediately.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrTimeout, ErrRefused, ErrUnreachable, ErrNetwork:
		return true
	}
	return false
}

// classify maps a network error onto an ErrorKind. Unrecognized errors are
// treated as transient network failures.
func classify(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrTimeout
		}
		return ErrDNS
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return ErrMalformed
	}

	var certVerify *tls.CertificateVerificationError
	var unknownCA x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certVerify) || errors.As(err, &unknownCA) ||
		errors.As(err, &hostname) || errors.As(err, &certInvalid) {
		return ErrTLS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrRefused
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return ErrUnreachable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	return ErrNetwork
}
