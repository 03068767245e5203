// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalogue of Markdown
// troubleshooting guides rendered with glamour when a build fails.
package issue
