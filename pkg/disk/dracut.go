package disk

import (
	"fmt"
)

// DracutSetupString returns the kernel command line fragment that lets the
// initramfs assemble the device, or "" if the device needs none.
func (d *Device) DracutSetupString() string {
	switch d.Type {
	case DeviceTypeLUKS:
		if len(d.Parents) == 0 || d.Parents[0].Format.UUID == "" {
			return ""
		}
		return fmt.Sprintf("rd_LUKS_UUID=luks-%s", d.Parents[0].Format.UUID)
	case DeviceTypeLVMLV:
		return fmt.Sprintf("rd_LVM_LV=%s/%s", d.VGName, d.LVName)
	case DeviceTypeMDArray:
		if d.UUID == "" {
			return ""
		}
		return fmt.Sprintf("rd_MD_UUID=%s", d.UUID)
	case DeviceTypeDMRaid:
		return fmt.Sprintf("rd_DM_UUID=%s", d.Name)
	case DeviceTypeISCSI:
		if d.ISCSI == nil {
			return ""
		}
		auth := ""
		if d.ISCSI.User != "" {
			auth = fmt.Sprintf("%s:%s@", d.ISCSI.User, d.ISCSI.Password)
		}
		return fmt.Sprintf("netroot=iscsi:%s%s::%d::%s", auth, d.ISCSI.Address, d.ISCSI.Port, d.ISCSI.IQN)
	}
	return ""
}
