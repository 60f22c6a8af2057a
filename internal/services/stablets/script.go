package stablets

// workerScript loads the model once, prints a ready marker, then serves one
// alignment job per stdin line. Library output is redirected to stderr so
// stdout carries only protocol lines.
const workerScript = `
import json
import sys

import stable_whisper

protocol = sys.stdout
sys.stdout = sys.stderr


def emit(payload):
    protocol.write(json.dumps(payload, ensure_ascii=False) + "\n")
    protocol.flush()


def main():
    model_name = sys.argv[1]
    device = sys.argv[2]
    try:
        model = stable_whisper.load_model(model_name, device=device)
    except Exception as exc:
        emit({"ready": False, "error": "load model: %s" % exc})
        return 1
    emit({"ready": True})
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            job = json.loads(line)
            result = model.align(
                job["audio"],
                job["text"],
                language=job["language"],
                original_split=True,
            )
            result.to_srt_vtt(job["output"], word_level=False)
            emit({"ok": True})
        except Exception as exc:
            emit({"ok": False, "error": str(exc)})
    return 0


if __name__ == "__main__":
    sys.exit(main())
`
