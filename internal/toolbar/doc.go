// Package toolbar interprets the Quick Access Toolbar document for LUCID.
//
// The toolbar document is a YAML mapping of tab name to tab definition. Each
// tab carries an optional config block and an ordered mapping of button label
// to button properties:
//
//	Experiment:
//	  config:
//	    cols: 3
//	  buttons:
//	    "Open Terminal":
//	      type: shell
//	      commands: ["xterm"]
//	      redirectCommandOutput: true
//	    "Beam Status":
//	      type: display
//	      filenames: ["beam_status.ui"]
//	      macros: {BEAMLINE: "TMO"}
//	      toolTip: "Open the beam status screen"
//
// # Pipeline
//
//   - Loader parses the document into a Spec, preserving declaration order of
//     tabs and buttons, and validates every button eagerly.
//   - NewControl (the button factory) resolves a Button into a Control
//     descriptor: a Shell action, a Display action, or an inert control.
//   - Arrange and LayoutSpec place each control in its tab grid using snake
//     (row-major by default) fill.
//
// Malformed documents fail with a *ConfigError, which matches ErrConfig under
// errors.Is. Nothing in this package renders widgets or runs processes; see
// the activation package for that.
package toolbar
