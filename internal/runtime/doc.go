// SPDX-License-Identifier: MPL-2.0

// Package runtime provisions isolated execution contexts for build variants
// and runs shell commands inside them.
//
// Three runtimes are provided:
//   - virtual: a private directory per variant, commands interpreted in-process by mvdan/sh
//   - native: a private directory per variant, commands run by the host shell
//   - container: one container per variant (testcontainers), with the variant directory bind-mounted
//
// Every runtime is both a Provisioner and a Runner. The Registry maps
// RuntimeType values to runtimes; BuildRegistry fills it from configuration.
package runtime
