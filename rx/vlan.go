package rx

// stripVLAN implements step 3b: "optionally strip VLAN when
// vl_untag is set and EtherType is 802.1Q". payload is assumed to start at
// the Ethernet header (dst[6] src[6] ethertype[2]...); returns the
// possibly-shortened payload and the extracted TCI, or the input unchanged
// with stripped=false.
func stripVLAN(payload []byte, enabled bool) (out []byte, tci uint16, stripped bool) {
	const ethHeaderLen = 14
	const vlanTagLen = 4
	const etherType8021Q = 0x8100

	if !enabled || len(payload) < ethHeaderLen+vlanTagLen {
		return payload, 0, false
	}
	et := uint16(payload[12])<<8 | uint16(payload[13])
	if et != etherType8021Q {
		return payload, 0, false
	}
	tci = uint16(payload[14])<<8 | uint16(payload[15])
	out = make([]byte, 0, len(payload)-vlanTagLen)
	out = append(out, payload[:12]...)
	out = append(out, payload[16:]...)
	return out, tci, true
}
