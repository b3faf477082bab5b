package core

import (
	"bytes"
	"errors"
	"io"
	"os"
	"unsafe"

	"github.com/pierrec/lz4"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// pipelineCache wraps the driver's pipeline cache and persists its
// blob to disk between runs, lz4 compressed. A missing or corrupt file
// just means a cold cache, never a failed device.
type pipelineCache struct {
	api    *API
	device vk.Device
	handle vk.PipelineCache
	path   string
}

func newPipelineCache(api *API, device vk.Device, path string) (*pipelineCache, error) {
	pc := &pipelineCache{api: api, device: device, path: path}

	var seed []byte
	if path != "" {
		if blob, err := loadCacheBlob(path); err != nil {
			log.WithError(err).Debug("pipeline cache not restored, starting cold")
		} else {
			seed = blob
		}
	}

	createInfo := vk.PipelineCacheCreateInfo{
		SType:           vk.StructureTypePipelineCacheCreateInfo,
		InitialDataSize: uint(len(seed)),
	}
	if len(seed) > 0 {
		createInfo.PInitialData = unsafe.Pointer(&seed[0])
	}
	result := api.CreatePipelineCache(device, &createInfo, nil, &pc.handle)
	if result != vk.Success {
		return nil, errors.New("vk.CreatePipelineCache(): " + vk.Error(result).Error())
	}
	return pc, nil
}

// save writes the current cache blob to the configured path.
func (pc *pipelineCache) save() error {
	if pc.path == "" {
		return nil
	}
	var size uint
	result := pc.api.GetPipelineCacheData(pc.device, pc.handle, &size, nil)
	if result != vk.Success {
		return errors.New("vk.GetPipelineCacheData(): " + vk.Error(result).Error())
	}
	if size == 0 {
		return nil
	}
	blob := make([]byte, size)
	result = pc.api.GetPipelineCacheData(pc.device, pc.handle, &size, unsafe.Pointer(&blob[0]))
	if result != vk.Success {
		return errors.New("vk.GetPipelineCacheData(): " + vk.Error(result).Error())
	}
	return saveCacheBlob(pc.path, blob[:size])
}

func (pc *pipelineCache) destroy() {
	if pc.handle == vk.PipelineCache(vk.NullHandle) {
		return
	}
	if err := pc.save(); err != nil {
		log.WithError(err).Warn("pipeline cache not persisted")
	}
	pc.api.DestroyPipelineCache(pc.device, pc.handle, nil)
	pc.handle = vk.PipelineCache(vk.NullHandle)
}

func loadCacheBlob(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, lz4.NewReader(f)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func saveCacheBlob(path string, blob []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(f)
	if _, err := zw.Write(blob); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
