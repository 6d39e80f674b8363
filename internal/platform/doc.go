// Package platform provides filesystem helpers that differ by operating
// system. On Windows, Unix permission bits are not applied.
package platform
