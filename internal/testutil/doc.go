// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test doubles and helpers shared across packages.
//
// FakeRunner scripts external tool invocations so buildah, package manager
// and ansible calls can be asserted without spawning processes. FakeClock
// drives code that takes a now or sleep function. The Must* helpers fail the
// test immediately instead of returning errors, and ContainerSemaphore caps
// how many integration test containers run at once.
package testutil
