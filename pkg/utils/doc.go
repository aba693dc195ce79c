// Package utils provides shared numeric helpers and logger construction.
package utils
