package main

import "testing"

func TestParseSetElements(t *testing.T) {
	output := `table bridge evpn_sph {
	set df_bonds {
		type ifname
		elements = { bond0, bond1 }
	}
}
`
	members := parseSetElements([]byte(output))
	if len(members) != 2 || members[0] != "bond0" || members[1] != "bond1" {
		t.Errorf("parseSetElements(output) = %v; want [bond0 bond1]", members)
	}
}

func TestParseSetElementsEmptySet(t *testing.T) {
	output := `table bridge evpn_sph {
	set df_bonds {
		type ifname
	}
}
`
	if members := parseSetElements([]byte(output)); len(members) != 0 {
		t.Errorf("parseSetElements(output) = %v; want empty", members)
	}
}
