// Package fakes provides test doubles for tpcreds interfaces.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior.
//
// Usage:
//
//	reader := fakes.NewFakeKeychainReader()
//	reader.SetSecret("com.tableplus.TablePlus", "abc123_database", "secret")
//	err := keychain.Verify(reader, "com.tableplus.TablePlus", "abc123_database", "secret")
package fakes
