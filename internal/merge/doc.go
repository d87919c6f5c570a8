// Package merge implements the deep merge used to combine value and config
// overlays.
//
// Two nested trees under the same key are always merged recursively. Equal
// scalars are left alone. When scalars differ the Policy decides:
//
//   - LeftToRight ("ltr"): the later overlay wins
//   - RightToLeft ("rtl"): the earlier overlay wins
//   - Ask ("ask"): unsupported, fails with ErrUnsupportedOperation
//   - Crash ("crash"): fails with a ConflictError naming the dotted key path
//
// Merge never mutates its inputs; every call returns a fresh tree.
//
//	values, err := merge.DeepMergeAll(merge.LeftToRight, project, cluster, environment)
package merge
