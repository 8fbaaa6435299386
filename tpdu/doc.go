/*
The package tpdu implements the decoding of the SMS transfer protocol data units that are
necessary to recover SMS messages from raw memory images. This implementation is based on:

	[TL]    ETSI TS 123 040 V16.0.0 (2020-07), Technical realization of the Short Message Service
	[ALPHA] ETSI TS 123 038 V16.0.0 (2020-07), Alphabets and language-specific information

The most relevant chapter in [TL] is 9.2 (Service provided by the SM-TL), in [ALPHA] it is 6 (SMS Data
Coding Scheme).

All decoders are total: for any input they either return a value together with true, or they
return false. None of them panics or returns an error for malformed input, because malformed input
is the normal case when scanning memory images.

Abbreviations:
TPDU: Transfer Protocol Data Unit
MTI:  Message Type Indicator
TON:  Type Of Number
DCS:  Data Coding Scheme
VPF:  Validity Period Format
SCTS: Service Centre Time Stamp

Restrictions:
Only SMS-SUBMIT and SMS-DELIVER are supported. Concatenated messages are not reassembled.
*/
package tpdu
