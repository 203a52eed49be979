package snapshot

import "github.com/tinylib/msgp/msgp"

// MarshalMsg and UnmarshalMsg are hand-written in the shape msgp's code
// generator produces (one map entry per field, in field-declaration order)
// since GroupRecord's field set is small and stable enough not to warrant
// running the generator for this debuggability store.

const groupRecordNumFields = 11

func (z *GroupRecord) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.AppendMapHeader(b, groupRecordNumFields)
	o = msgp.AppendString(o, "gid")
	o = msgp.AppendInt(o, z.GID)
	o = msgp.AppendString(o, "in_use")
	o = msgp.AppendBool(o, z.InUse)
	o = msgp.AppendString(o, "owner_id")
	o = msgp.AppendInt32(o, z.OwnerID)
	o = msgp.AppendString(o, "creator_pid")
	o = msgp.AppendInt32(o, z.CreatorPID)
	o = msgp.AppendString(o, "policy")
	o = msgp.AppendUint8(o, z.Policy)
	o = msgp.AppendString(o, "inst_id")
	o = msgp.AppendString(o, z.InstID)
	o = msgp.AppendString(o, "generation")
	o = msgp.AppendInt64(o, z.Generation)
	o = msgp.AppendString(o, "sock_mask")
	o = msgp.AppendArrayHeader(o, uint32(len(z.SockMask)))
	for _, m := range z.SockMask {
		o = msgp.AppendUint64(o, m)
	}
	o = msgp.AppendString(o, "has_filter")
	o = msgp.AppendBool(o, z.HasFilter)
	o = msgp.AppendString(o, "has_program")
	o = msgp.AppendBool(o, z.HasProgram)
	o = msgp.AppendString(o, "vlan_filter")
	o = msgp.AppendBool(o, z.VlanFilter)
	return o, nil
}

func (z *GroupRecord) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var n uint32
	n, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < n; i++ {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch key {
		case "gid":
			z.GID, bts, err = msgp.ReadIntBytes(bts)
		case "in_use":
			z.InUse, bts, err = msgp.ReadBoolBytes(bts)
		case "owner_id":
			z.OwnerID, bts, err = msgp.ReadInt32Bytes(bts)
		case "creator_pid":
			z.CreatorPID, bts, err = msgp.ReadInt32Bytes(bts)
		case "policy":
			z.Policy, bts, err = msgp.ReadUint8Bytes(bts)
		case "inst_id":
			z.InstID, bts, err = msgp.ReadStringBytes(bts)
		case "generation":
			z.Generation, bts, err = msgp.ReadInt64Bytes(bts)
		case "sock_mask":
			var arrN uint32
			arrN, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			for j := uint32(0); j < arrN && int(j) < len(z.SockMask); j++ {
				z.SockMask[j], bts, err = msgp.ReadUint64Bytes(bts)
				if err != nil {
					return bts, err
				}
			}
		case "has_filter":
			z.HasFilter, bts, err = msgp.ReadBoolBytes(bts)
		case "has_program":
			z.HasProgram, bts, err = msgp.ReadBoolBytes(bts)
		case "vlan_filter":
			z.VlanFilter, bts, err = msgp.ReadBoolBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
