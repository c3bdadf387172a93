package core

import "time"

// Plugin is the capability interface every host-loaded component implements.
type Plugin interface {
	// Name returns the plugin's fixed identifier (e.g., "logs", "mqtt").
	Name() string

	// Status renders the plugin's current state for humans.
	Status() string

	// Dispatch executes a named command with a string payload.
	Dispatch(action, data string) Result

	// Unload signals imminent teardown and returns the unload token.
	Unload() string
}

// Clock supplies the epoch-second timestamps stamped on new entries.
type Clock interface {
	Now() uint64
}

// Decrypter turns an inbound ciphertext into usable plaintext.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// NameProvider returns the name of the running instance.
type NameProvider interface {
	CurrentName() string
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// StaticName is a NameProvider that always returns the same name.
type StaticName string

func (n StaticName) CurrentName() string { return string(n) }
