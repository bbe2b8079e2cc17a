// Package accessor maps the four snapshot domains onto store keys.
//
// Customization values live under the store's customization namespace.
// Sidebar assignments, per-type widget settings, menu bindings and the
// auxiliary options each have fixed keys; see the package constants.
package accessor
