// SPDX-License-Identifier: MPL-2.0

// Package matrix defines the build-matrix value model and the pure logic that
// operates on it.
//
// A matrix is a set of BuildConfig values (one per variant) plus an optional
// JobPolicy. Variants are derived from one another by cloning a base
// configuration and overriding individual fields:
//
//	base, err := matrix.NewBuildConfig("py311", "linux",
//		matrix.WithPackages("python=3.11", "pytest"),
//		matrix.WithTestCommands("pytest --junitxml=report.xml"),
//		matrix.WithThresholds(1, 6),
//	)
//	dev := base.Clone()
//	dev.SetName("py312-dev")
//	dev.SetPackages([]string{"python=3.12", "pytest"})
//
// The package also holds the threshold evaluation that maps failure and error
// counts to a Status tier, and the aggregation that folds per-variant results
// into one job-level verdict. Nothing here performs I/O.
package matrix
