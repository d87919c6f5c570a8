// Package color provides the terminal styling of manifestctl reports.
//
// Colors are lipgloss adaptive colors with a light and a dark variant. The
// variant is chosen from the terminal background. Reasons are muted so the
// template lines stand out.
//
// # Report Lines
//
// Validation results are printed one line per template, followed by the
// itemized reasons of a failure:
//
//	fmt.Println(color.Valid("deployment.yaml"))  // deployment.yaml: ✔
//	fmt.Println(color.Invalid("service.yaml"))   // service.yaml: ✗
//	fmt.Println(color.Reason("undefined variable: port"))
//
// # Environment Variables
//
// Respected environment variables:
//   - NO_COLOR: Disable all color output (see Configure)
package color
