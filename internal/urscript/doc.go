// Package urscript encodes pick-and-place motion programs for a UR controller.
//
// A pick program moves one unit from a source bin (1=a, 2=b, 3=c) to the
// fixed shipment bin. Before a program is played on the program port, the
// dashboard (control) port must receive the brake release preamble. The two
// payloads are always separate sends to separate ports.
package urscript
