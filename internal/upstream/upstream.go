// Package upstream holds the types shared between the transport variants that
// talk to the wrapped ERP system.
package upstream

// Credentials holds the application identity & login credentials used against the upstream.
// They are loaded once at startup and never change afterwards.
type Credentials struct {
	AppName        string
	AppDescription string
	AppID          int
	Username       string
	Password       string
}
