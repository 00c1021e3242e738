// Package config loads engine settings from the environment. A .env file
// in the working directory is merged in first, which keeps local
// development out of the shell profile; real environment variables always
// win.
package config
