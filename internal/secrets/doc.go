// Package secrets resolves secret keys used by templates through a
// configured provider.
//
// Providers are looked up by name in an explicit Registry. The built-in
// providers are:
//
//   - random: generates a random lowercase alphanumeric string per key and
//     returns the same value for repeated lookups within one run
//   - age: reads an age encrypted YAML mapping of key to secret
//
// A Resolver binds a registry to the secrets section of the merged
// configuration and prepends the configured prefix to every key.
package secrets
