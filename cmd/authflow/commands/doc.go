// Package commands implements the authflow command line: signing up with a
// password, signing in through a federated provider, inspecting the stored
// session flags and running the development auth server.
package commands
