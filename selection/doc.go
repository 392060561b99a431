// Package selection maps head, site and DUT selection criteria onto the DUT axis of a file.
//
// The DUT axis is the ordered list of DUT indices in the file (DutArray, 1-based, in PIR/PRR
// order). For each test head the DUT table records the site that tested each DUT, or NoSite.
// A Mask is a bitset over that axis; Select gathers the values of a per-DUT slice under a mask.
package selection
