package yosys

// Package yosys documents the IO contract of the synthesis module.
//
// Inputs (takes):
//   - `sources`: HDL files. Entries may be doublestar globs
//     (`${buildDir}/../rtl/**/*.sv`); `.v`/`.sv` files are read with
//     `read_verilog`, `.il`/`.rtlil` files with `read_rtlil`.
//   - `build_dir?`: directory the outputs are derived into. Without it the
//     outputs land next to `top` relative to the working directory.
//   - Any extra takes declared through params (`takes:`), for TCL scripts.
//
// Values:
//   - `top`, `device` (required).
//   - `tcl_scripts?`: family script directory, exported to the wrapper as
//     `TCL_SCRIPTS` unless `yosys_tcl_env` already sets it.
//   - `extra_args?`: extra yosys arguments. A string is shell-split.
//   - `yosys_tcl_env?`: mapping of environment variables for the TCL wrapper.
//     Sequence values are space-joined.
//   - `read_verilog_args?`: arguments inserted into every `read_verilog`.
//
// Outputs:
//   - `json` and the demanded `synth_log`.
//   - For the VPR flow additionally `eblif`, `fasm_extra` (created empty when
//     synthesis did not write one) and `synth_json`.
//   - Extra products declared through params (`produces:`). Optional extras are
//     rejected; required extras map to `<dir>/<device>_<name>.<name>`.
//
// The place-and-route tool is `vpr` unless params set `pnrtool`, or the
// `FPGA_FAM` environment variable names the ice40 family, in which case the
// nextpnr wrapper is used. The wrapper script is
// `<shareDir>/tcl/<pnrtool>.f4pga.tcl`.
